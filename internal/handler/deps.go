package handler

import (
	"chatgate/internal/app/gateway"
	"chatgate/internal/app/storage"
	"chatgate/internal/app/store"
	"chatgate/internal/configs"
)

type AppDeps struct {
	Gateway        *gateway.Gateway
	Config         *configs.AppConfig
	StorageService storage.Service
	Store          store.Store
}
