package db

import (
	"context"

	"github.com/vikstrous/dataloadgen"
)

type dataLoaderKey string

const (
	DataLoaderKeyUserData dataLoaderKey = "user_data_loader"
)

// UserDataLoader batches profile and payment settings lookups made while
// rendering one response.
//
//	loader, ok := ctx.Value(db.DataLoaderKeyUserData).(*db.UserDataLoader)
type UserDataLoader struct {
	GetProfile         *dataloadgen.Loader[string, *UserProfile]
	GetPaymentSettings *dataloadgen.Loader[string, *PaymentSettings]
}

func NewUserDataLoader(dbWrapper UserDBWrapper) *UserDataLoader {
	return &UserDataLoader{
		GetProfile:         dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetProfiles),
		GetPaymentSettings: dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetPaymentSettings),
	}
}

func WithUserDataLoader(ctx context.Context, loader *UserDataLoader) context.Context {
	return context.WithValue(ctx, DataLoaderKeyUserData, loader)
}

func UserDataLoaderFrom(ctx context.Context) (*UserDataLoader, bool) {
	loader, ok := ctx.Value(DataLoaderKeyUserData).(*UserDataLoader)
	return loader, ok
}
