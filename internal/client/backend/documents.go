package backend

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func docRef(collection, key string) rpc.Fields {
	return rpc.Fields{"collection": rpc.String(collection), "key": rpc.String(key)}
}

func encodeFields(fields Document) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return s, nil
}

func (b *GRPCBackend) Get(ctx context.Context, collection, key string) (Document, error) {
	out, err := b.invoke(ctx, rpc.MethodGet, rpc.Message(docRef(collection, key)))
	if err != nil {
		return nil, err
	}
	doc := rpc.GetObject(out, "document")
	if doc == nil {
		return nil, ErrNotFound
	}
	return Document(doc.AsMap()), nil
}

func (b *GRPCBackend) Set(ctx context.Context, collection, key string, fields Document, merge bool) error {
	s, err := encodeFields(fields)
	if err != nil {
		return err
	}
	f := docRef(collection, key)
	f["fields"] = rpc.Object(s)
	f["merge"] = rpc.Bool(merge)
	_, err = b.invoke(ctx, rpc.MethodSet, rpc.Message(f))
	return err
}

func (b *GRPCBackend) Update(ctx context.Context, collection, key string, fields Document) error {
	s, err := encodeFields(fields)
	if err != nil {
		return err
	}
	f := docRef(collection, key)
	f["fields"] = rpc.Object(s)
	_, err = b.invoke(ctx, rpc.MethodUpdate, rpc.Message(f))
	return err
}

func (b *GRPCBackend) Delete(ctx context.Context, collection, key string) error {
	_, err := b.invoke(ctx, rpc.MethodDelete, rpc.Message(docRef(collection, key)))
	return err
}

func (b *GRPCBackend) List(ctx context.Context, collection string) ([]Item, error) {
	out, err := b.invoke(ctx, rpc.MethodList, rpc.Message(rpc.Fields{"collection": rpc.String(collection)}))
	if err != nil {
		return nil, err
	}
	docs := rpc.GetObjectList(out, "documents")
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, Item{
			Key:    rpc.GetString(d, "key"),
			Fields: Document(rpc.GetObject(d, "fields").AsMap()),
		})
	}
	return items, nil
}

func (b *GRPCBackend) PresignAvatarUpload(ctx context.Context) (string, string, error) {
	out, err := b.invoke(ctx, rpc.MethodPresignAvatarUpload, nil)
	if err != nil {
		return "", "", err
	}
	return rpc.GetString(out, "key"), rpc.GetString(out, "url"), nil
}

func (b *GRPCBackend) PresignAvatarDownload(ctx context.Context, key string) (string, error) {
	out, err := b.invoke(ctx, rpc.MethodPresignAvatarDownload, rpc.Message(rpc.Fields{"key": rpc.String(key)}))
	if err != nil {
		return "", err
	}
	return rpc.GetString(out, "url"), nil
}
