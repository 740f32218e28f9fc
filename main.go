package main

import (
	"github.com/xkilldash9x/noticescan/cmd"
)

func main() {
	cmd.Execute()
}
