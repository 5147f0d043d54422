// Command dbkit validates declared table models against a live database.
package main

import "os"

func main() {
	os.Exit(Execute())
}
