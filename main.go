package main

import "github.com/thirdweb-dev/txconflict/cmd"

func main() {
	cmd.Execute()
}
