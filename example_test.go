package uvw_test

import (
	"context"
	"fmt"
	"time"

	"github.com/sledgeh/uvw"
)

func ExampleTimer() {
	ctx := context.Background()
	err := uvw.Scoped(ctx, func(loop *uvw.Loop) error {
		timer := uvw.NewTimer(loop)
		var n int
		uvw.On(timer, func(_ uvw.TimerEvent, t *uvw.Timer) {
			n++
			fmt.Println("tick", n)
			if n == 3 {
				t.Stop()
			}
		})
		uvw.On(timer, func(_ uvw.CloseEvent, _ *uvw.Timer) {
			fmt.Println("closed")
		})
		timer.Start(time.Millisecond, time.Millisecond)
		return loop.Run(ctx, uvw.RunDefault)
	})
	fmt.Println("err:", err)

	// Output:
	// tick 1
	// tick 2
	// tick 3
	// closed
	// err: <nil>
}

func ExampleErrorEvent() {
	loop, err := uvw.NewLoop()
	if err != nil {
		panic(err)
	}
	defer loop.Shutdown(context.Background())

	timer := uvw.NewTimer(loop)
	uvw.On(timer, func(ev uvw.ErrorEvent, _ *uvw.Timer) {
		fmt.Println(ev.Name(), ev.What())
	})
	timer.Again()

	// Output:
	// EINVAL invalid argument
}

func ExampleNewEmitter() {
	type greeting struct{ name string }

	e := uvw.NewEmitter("owner")
	conn := uvw.On(e, func(ev greeting, owner string) {
		fmt.Printf("hello %s, from %s\n", ev.name, owner)
	})
	uvw.Once(e, func(ev greeting, _ string) {
		fmt.Println("first greeting only")
	})

	uvw.Publish(e, greeting{name: "a"})
	uvw.Publish(e, greeting{name: "b"})
	uvw.Erase(e, conn)
	uvw.Publish(e, greeting{name: "c"})
	fmt.Println(uvw.EmptyAll(e))

	// Output:
	// hello a, from owner
	// first greeting only
	// hello b, from owner
	// true
}
