package main

import "snowbank/cmd"

func main() {
	cmd.Execute()
}
