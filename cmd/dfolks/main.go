// Command dfolks resolves and runs tabular ingestion pipelines described in YAML.
package main

func main() {
	Execute()
}
