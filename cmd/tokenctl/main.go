// Command tokenctl administers secure-tokens credentials from the shell.
package main

import "github.com/arkham-district/secure-tokens/cmd/tokenctl/cmd"

func main() {
	cmd.Execute()
}
