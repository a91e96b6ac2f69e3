// logsift parses web server access logs into clean, deduplicated records.
package main

import (
	"os"

	"github.com/ccollicutt/logsift/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
