package main

import (
	"github.com/auditor-project/auditor/pkg/cmd"
)

func main() {
	cmd.Execute()
}
