// Command querykit runs one-shot queries and watches event streams against
// an HTTP API.
package main

import "github.com/kbukum/querykit/cmd/querykit/cmd"

func main() {
	cmd.Execute()
}
