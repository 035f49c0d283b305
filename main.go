package main

import "github.com/pooriaast/sleuth/cmd"

func main() {
	cmd.Execute()
}
