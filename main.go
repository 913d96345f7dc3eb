package main

import (
	"github.com/ujjawalkaushik1110/comet-agentic-browser/cmd"
)

func main() {
	cmd.Execute()
}
