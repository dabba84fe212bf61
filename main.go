// ./main.go
package main

import (
	"github.com/xkilldash9x/autoform/cmd"
)

func main() {
	cmd.Execute()
}
