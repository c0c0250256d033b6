package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler is the signature shared by every method of both services.
type Handler func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

type AccountsServer interface {
	Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SignOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	VerifySession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateDisplayName(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateEmail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type DocumentsServer interface {
	Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Set(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	PresignAvatarUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	PresignAvatarDownload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// unary adapts a method selector into a grpc.MethodHandler that decodes a
// Struct and runs the interceptor chain.
func unary[S any](fullMethod string, pick func(S) Handler) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := pick(srv.(S))
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}

var accountsDesc = grpc.ServiceDesc{
	ServiceName: AccountsService,
	HandlerType: (*AccountsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary(MethodPing, func(s AccountsServer) Handler { return s.Ping })},
		{MethodName: "SignUp", Handler: unary(MethodSignUp, func(s AccountsServer) Handler { return s.SignUp })},
		{MethodName: "GetSalt", Handler: unary(MethodGetSalt, func(s AccountsServer) Handler { return s.GetSalt })},
		{MethodName: "SignIn", Handler: unary(MethodSignIn, func(s AccountsServer) Handler { return s.SignIn })},
		{MethodName: "RefreshToken", Handler: unary(MethodRefreshToken, func(s AccountsServer) Handler { return s.RefreshToken })},
		{MethodName: "SignOut", Handler: unary(MethodSignOut, func(s AccountsServer) Handler { return s.SignOut })},
		{MethodName: "VerifySession", Handler: unary(MethodVerifySession, func(s AccountsServer) Handler { return s.VerifySession })},
		{MethodName: "UpdateDisplayName", Handler: unary(MethodUpdateDisplayName, func(s AccountsServer) Handler { return s.UpdateDisplayName })},
		{MethodName: "UpdateEmail", Handler: unary(MethodUpdateEmail, func(s AccountsServer) Handler { return s.UpdateEmail })},
		{MethodName: "UpdateCredential", Handler: unary(MethodUpdateCredential, func(s AccountsServer) Handler { return s.UpdateCredential })},
	},
	Metadata: "useraccounts/v1/accounts",
}

var documentsDesc = grpc.ServiceDesc{
	ServiceName: DocumentsService,
	HandlerType: (*DocumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: unary(MethodGet, func(s DocumentsServer) Handler { return s.Get })},
		{MethodName: "Set", Handler: unary(MethodSet, func(s DocumentsServer) Handler { return s.Set })},
		{MethodName: "Update", Handler: unary(MethodUpdate, func(s DocumentsServer) Handler { return s.Update })},
		{MethodName: "Delete", Handler: unary(MethodDelete, func(s DocumentsServer) Handler { return s.Delete })},
		{MethodName: "List", Handler: unary(MethodList, func(s DocumentsServer) Handler { return s.List })},
		{MethodName: "PresignAvatarUpload", Handler: unary(MethodPresignAvatarUpload, func(s DocumentsServer) Handler { return s.PresignAvatarUpload })},
		{MethodName: "PresignAvatarDownload", Handler: unary(MethodPresignAvatarDownload, func(s DocumentsServer) Handler { return s.PresignAvatarDownload })},
	},
	Metadata: "useraccounts/v1/documents",
}

func RegisterAccountsServer(r grpc.ServiceRegistrar, srv AccountsServer) {
	r.RegisterService(&accountsDesc, srv)
}

func RegisterDocumentsServer(r grpc.ServiceRegistrar, srv DocumentsServer) {
	r.RegisterService(&documentsDesc, srv)
}

// Invoke calls fullMethod on cc. A nil in is sent as an empty Struct.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
