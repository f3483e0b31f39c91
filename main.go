/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/sitewatch/sitelock/app"
)

func main() {
	if err := app.New(os.Stdout, os.Args).Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "sitelock: %v\n", err)
		os.Exit(1)
	}
}
