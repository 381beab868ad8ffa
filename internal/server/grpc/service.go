package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/and161185/account-keeper/internal/convert"
	"github.com/and161185/account-keeper/internal/errs"
)

// ServiceName is the fully qualified name of the account service.
const ServiceName = "account.v1.Accounts"

// AccountsServer is the server API of account.v1.Accounts. Messages are the
// convert wire types, carried by the JSON codec.
type AccountsServer interface {
	Register(context.Context, *convert.RegisterRequest) (*convert.AuthResponse, error)
	Login(context.Context, *convert.LoginRequest) (*convert.AuthResponse, error)
	GetMe(context.Context, *convert.Empty) (*convert.UserResponse, error)
	UpdateMe(context.Context, *convert.UpdateUserRequest) (*convert.UserResponse, error)
	DeleteMe(context.Context, *convert.VersionRequest) (*convert.UserResponse, error)
	RestoreMe(context.Context, *convert.VersionRequest) (*convert.UserResponse, error)
}

// AccountsServiceDesc describes account.v1.Accounts for grpc.Server.RegisterService.
var AccountsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", AccountsServer.Register),
		unary("Login", AccountsServer.Login),
		unary("GetMe", AccountsServer.GetMe),
		unary("UpdateMe", AccountsServer.UpdateMe),
		unary("DeleteMe", AccountsServer.DeleteMe),
		unary("RestoreMe", AccountsServer.RestoreMe),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "account/v1/accounts",
}

// RegisterAccountsServer registers srv on s.
func RegisterAccountsServer(s grpc.ServiceRegistrar, srv AccountsServer) {
	s.RegisterService(&AccountsServiceDesc, srv)
}

// FullMethod returns "/account.v1.Accounts/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

func unary[Req, Resp any](name string, call func(AccountsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			var decErr error
			if err := dec(in); err != nil {
				decErr = errs.Wrap(err, errs.KindInvalidRequest, "malformed message")
			}
			if interceptor == nil {
				if decErr != nil {
					return nil, Status(decErr)
				}
				return call(srv.(AccountsServer), ctx, in)
			}
			// A decode failure still goes through the chain so it is logged and counted.
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				if decErr != nil {
					return nil, decErr
				}
				return call(srv.(AccountsServer), ctx, req.(*Req))
			})
		},
	}
}
