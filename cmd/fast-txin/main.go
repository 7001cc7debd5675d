package main

import "github.com/OdyseeTeam/fast-txin/cmd/fast-txin/cmd"

func main() {
	cmd.Execute()
}
