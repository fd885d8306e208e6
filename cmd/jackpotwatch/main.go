package main

import "jackpotwatch/internal/cli"

func main() {
	cli.Execute()
}
