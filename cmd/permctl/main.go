// Package main is the entry point for the permctl binary.
package main

import (
	"os"

	"github.com/thaihung110/permission-api/pkg/permctl"
)

func main() {
	os.Exit(permctl.Execute())
}
