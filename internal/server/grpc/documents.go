package grpc

import (
	"context"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

func docRef(in *structpb.Struct) (collection, key string) {
	return rpc.GetString(in, "collection"), rpc.GetString(in, "key")
}

func (s *GRPCServer) fieldsMessage(ctx context.Context, d *models.Document) (*structpb.Struct, error) {
	fields, err := structpb.NewStruct(d.Fields)
	if err != nil {
		s.logger.Error(ctx, "stored document is not encodable", "collection", d.Collection, "key", d.Key, "error", err)
		return nil, rpc.Error(codes.Internal, "internal error")
	}
	return fields, nil
}

func (s *GRPCServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	collection, key := docRef(in)
	d, err := s.documents.Get(ctx, p.AccountID, collection, key)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	fields, err := s.fieldsMessage(ctx, d)
	if err != nil {
		return nil, err
	}
	return rpc.Message(rpc.Fields{"document": rpc.Object(fields)}), nil
}

func (s *GRPCServer) Set(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	collection, key := docRef(in)
	err = s.documents.Set(ctx, p.AccountID, collection, key, rpc.GetObject(in, "fields").AsMap(), rpc.GetBool(in, "merge"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(nil), nil
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	fields := rpc.GetObject(in, "fields")
	if fields == nil {
		return nil, rpc.Error(codes.InvalidArgument, common.CodeInvalidArgument)
	}
	collection, key := docRef(in)
	if err := s.documents.Update(ctx, p.AccountID, collection, key, fields.AsMap()); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(nil), nil
}

func (s *GRPCServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	collection, key := docRef(in)
	if err := s.documents.Delete(ctx, p.AccountID, collection, key); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(nil), nil
}

func (s *GRPCServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.List(ctx, p.AccountID, rpc.GetString(in, "collection"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	items := make([]*structpb.Struct, 0, len(docs))
	for _, d := range docs {
		fields, err := s.fieldsMessage(ctx, d)
		if err != nil {
			return nil, err
		}
		items = append(items, rpc.Message(rpc.Fields{
			"key":        rpc.String(d.Key),
			"fields":     rpc.Object(fields),
			"updated_at": rpc.Time(d.UpdatedAt),
		}))
	}
	return rpc.Message(rpc.Fields{"documents": rpc.ObjectList(items)}), nil
}

func (s *GRPCServer) PresignAvatarUpload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	key, url, err := s.avatars.UploadURL(ctx, p.AccountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(rpc.Fields{"key": rpc.String(key), "url": rpc.String(url)}), nil
}

func (s *GRPCServer) PresignAvatarDownload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.avatars.DownloadURL(ctx, p.AccountID, rpc.GetString(in, "key"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.Message(rpc.Fields{"url": rpc.String(url)}), nil
}
