// Command wayfinder validates, plays and serves guided tours.
package main

func main() {
	Execute()
}
