package main

import "optcache/cmd/optcache/cmds"

func main() {
	cmds.Execute()
}
