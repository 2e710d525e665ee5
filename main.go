package main

import "corpanalyst/cli"

func main() {
	cli.Execute()
}
