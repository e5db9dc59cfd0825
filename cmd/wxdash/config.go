package main

import (
	"github.com/danmuck/wxdash/internal/client"
	"github.com/danmuck/wxdash/internal/config"
)

func defaultClientConfig() client.Config {
	return clientConfig(config.DefaultClientConfig())
}

func loadClientConfig(path string) (client.Config, error) {
	cfg, err := config.LoadClientConfig(path)
	if err != nil {
		return client.Config{}, err
	}
	return clientConfig(cfg), nil
}

func clientConfig(c config.ClientConfig) client.Config {
	return client.Config{
		Endpoint:        c.Endpoint,
		RefreshInterval: c.RefreshInterval,
		Session:         c.Session,
	}
}
