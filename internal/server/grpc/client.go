package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/and161185/account-keeper/internal/convert"
)

// Client calls account.v1.Accounts with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Register(ctx context.Context, in *convert.RegisterRequest, opts ...grpc.CallOption) (*convert.AuthResponse, error) {
	out := new(convert.AuthResponse)
	if err := c.invoke(ctx, "Register", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in *convert.LoginRequest, opts ...grpc.CallOption) (*convert.AuthResponse, error) {
	out := new(convert.AuthResponse)
	if err := c.invoke(ctx, "Login", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMe(ctx context.Context, opts ...grpc.CallOption) (*convert.UserResponse, error) {
	return c.user(ctx, "GetMe", &convert.Empty{}, opts)
}

func (c *Client) UpdateMe(ctx context.Context, in *convert.UpdateUserRequest, opts ...grpc.CallOption) (*convert.UserResponse, error) {
	return c.user(ctx, "UpdateMe", in, opts)
}

func (c *Client) DeleteMe(ctx context.Context, in *convert.VersionRequest, opts ...grpc.CallOption) (*convert.UserResponse, error) {
	return c.user(ctx, "DeleteMe", in, opts)
}

func (c *Client) RestoreMe(ctx context.Context, in *convert.VersionRequest, opts ...grpc.CallOption) (*convert.UserResponse, error) {
	return c.user(ctx, "RestoreMe", in, opts)
}

func (c *Client) user(ctx context.Context, method string, in any, opts []grpc.CallOption) (*convert.UserResponse, error) {
	out := new(convert.UserResponse)
	if err := c.invoke(ctx, method, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, FullMethod(method), in, out, opts...)
}
