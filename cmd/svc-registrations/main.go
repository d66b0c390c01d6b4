package main

import "github.com/architeacher/u2f-registrations/internal/runtime"

func main() {
	runtime.New().Run()
}
