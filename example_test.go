package defercall_test

import (
	"context"
	"errors"
	"fmt"

	defercall "github.com/joeycumines/go-defercall"
)

// Example_basicUsage demonstrates deferring a call onto a worker and
// block-reading its result.
//
// This shows the fundamental pattern of:
// 1. Creating a worker with NewWorker()
// 2. Capturing a call with New()
// 3. Submitting it with Submit()
// 4. Retrieving the result with Result()
func Example_basicUsage() {
	worker, err := defercall.NewWorker()
	if err != nil {
		fmt.Printf("failed to create worker: %v\n", err)
		return
	}
	defer worker.Shutdown()

	call := defercall.New(context.Background(), func(ctx context.Context) (int, error) {
		return 1 + 1, nil
	})
	if err := worker.Submit(call); err != nil {
		fmt.Printf("failed to submit: %v\n", err)
		return
	}

	result, err := call.Result()
	fmt.Println(result, err)

	// Output:
	// 2 <nil>
}

// Example_errorPropagation demonstrates that a failing call's error is
// returned to the waiter exactly as produced, as if the call had executed
// inline.
func Example_errorPropagation() {
	worker, err := defercall.NewWorker()
	if err != nil {
		fmt.Printf("failed to create worker: %v\n", err)
		return
	}
	defer worker.Shutdown()

	errValue := errors.New("x")
	call := defercall.New(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errValue
	})
	if err := worker.Submit(call); err != nil {
		fmt.Printf("failed to submit: %v\n", err)
		return
	}

	_, err = call.Result()
	fmt.Println(errors.Is(err, errValue))

	// Output:
	// true
}

// Example_runOnce demonstrates a worker that executes exactly one call and
// then shuts itself down.
func Example_runOnce() {
	worker, err := defercall.NewWorker(defercall.WithRunOnce(true))
	if err != nil {
		fmt.Printf("failed to create worker: %v\n", err)
		return
	}

	call := defercall.New(context.Background(), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err := worker.Submit(call); err != nil {
		fmt.Printf("failed to submit: %v\n", err)
		return
	}

	result, _ := call.Result()
	fmt.Println(result)

	// The single accepted call has settled; the worker stops on its own.
	if err := worker.Join(context.Background()); err != nil {
		fmt.Printf("join failed: %v\n", err)
		return
	}
	fmt.Println(worker.State())

	// Output:
	// done
	// Terminated
}

// ExampleGlobalWorker demonstrates the process-wide worker, for callers
// that do not want to manage worker lifetime themselves.
func ExampleGlobalWorker() {
	worker, err := defercall.GlobalWorker()
	if err != nil {
		fmt.Printf("failed to get global worker: %v\n", err)
		return
	}

	call := defercall.New(context.Background(), func(ctx context.Context) (int, error) {
		return 21 * 2, nil
	})
	if err := worker.Submit(call); err != nil {
		fmt.Printf("failed to submit: %v\n", err)
		return
	}

	result, err := call.Result()
	fmt.Println(result, err)

	// Output:
	// 42 <nil>
}
