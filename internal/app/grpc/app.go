package grpc

import (
	"fmt"
	"github.com/s10n41k/protos/gen/go/sso"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"log/slog"
)

// App owns the connection to the sso service.
type App struct {
	log  *slog.Logger
	conn *grpc.ClientConn
	addr string
}

func New(log *slog.Logger, addr string, opts ...grpc.DialOption) (*App, error) {
	const op = "grpcapp.New"

	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("grpc client created", slog.String("addr", addr))
	return &App{log: log, conn: conn, addr: addr}, nil
}

func (a *App) AuthClient() sso.AuthClient {
	return sso.NewAuthClient(a.conn)
}

// Close closes the connection.
func (a *App) Close() error {
	const op = "grpcapp.Close"

	a.log.With(slog.String("op", op)).
		Debug("closing grpc connection", slog.String("addr", a.addr))

	if err := a.conn.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
