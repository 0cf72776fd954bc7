//go:build !sqlite
// +build !sqlite

package cache

import (
	"errors"

	logx "caresync/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Cache, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite cache not built: build with -tags sqlite")
}
