package main

import (
	"github.com/hongjian03/FinalPSAssistant-sub000/cmd"
)

func main() {
	cmd.Execute()
}
