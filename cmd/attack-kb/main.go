// Command attack-kb loads a MITRE ATT&CK bundle and answers technique,
// tactic, mitigation and detection queries, either once from the command
// line or as a long-running tool server.
package main

import (
	"os"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd(newApp(os.Stdin, os.Stdout, os.Stderr)).Execute(); err != nil {
		os.Exit(1)
	}
}
