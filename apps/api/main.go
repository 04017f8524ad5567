// Command api serves the SETA admin back end: funding-window forms, submissions and students.
package main

import (
	_ "net/http/pprof" // register the /debug/pprof handlers
)

func main() {
	startWithDig()
}
