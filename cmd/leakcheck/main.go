// Command leakcheck stresses the msgctx binding from many goroutines and
// reports opened, closed and lost contexts per allocation site.
//
//	leakcheck run --mode leak --threads 100 --loops 10000
//	leakcheck watch --mode close
//	leakcheck guest --abi "^0.1"
package main

func main() {
	execute()
}
