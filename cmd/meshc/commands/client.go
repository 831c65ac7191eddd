package commands

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/snowdamiz/meshcore/internal/api/buildrpc"
)

// connectTimeout is the deadline of the context dial derives. grpc.NewClient
// does not take that context and connects lazily, so the timeout does not
// bound connection setup; the first RPC is what actually connects.
const connectTimeout = 2 * time.Second

// dial creates a client connection to the build daemon at daemonAddr and
// returns a buildrpc.Client over it alongside the connection's Close
// function, which the caller must call.
func dial(ctx context.Context) (*buildrpc.Client, func() error, error) {
	_, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := grpc.NewClient(
		daemonAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", daemonAddr, err)
	}

	return buildrpc.NewClient(conn), conn.Close, nil
}
