package session

import (
	"context"
	"time"

	"github.com/kernelbox/kernelbox/internal/container"
	"github.com/kernelbox/kernelbox/internal/docker"
	"github.com/kernelbox/kernelbox/internal/kernel"
)

// ContainerStarter launches one execution container per session and
// connects a kernel client to its published gateway port. A
// non-positive execTimeout falls back to the kernel client's default.
func ContainerStarter(client *docker.Client, opts container.Options, execTimeout time.Duration) Starter {
	return func(ctx context.Context, id string) (Backend, error) {
		box := container.New(client, opts)
		if err := box.Run(ctx); err != nil {
			return nil, err
		}
		port, err := box.ExecutorPort()
		if err != nil {
			_ = box.Kill(ctx)
			return nil, err
		}
		kc := kernel.NewClient(kernel.Options{Port: port})
		if err := kc.Connect(ctx); err != nil {
			_ = box.Kill(ctx)
			return nil, err
		}
		return &containerBackend{box: box, kernel: kc, execTimeout: execTimeout}, nil
	}
}

type containerBackend struct {
	box         *container.ExecutionContainer
	kernel      *kernel.Client
	execTimeout time.Duration
}

func (b *containerBackend) Execute(ctx context.Context, code string) (*kernel.Result, error) {
	if b.execTimeout > 0 {
		return b.kernel.ExecuteWithTimeout(ctx, code, b.execTimeout)
	}
	return b.kernel.Execute(ctx, code)
}

func (b *containerBackend) Close(ctx context.Context) error {
	kerr := b.kernel.Close(ctx)
	if err := b.box.Kill(ctx); err != nil {
		return err
	}
	return kerr
}
