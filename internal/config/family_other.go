//go:build !linux

package config

import "github.com/nylssoft/godrop/internal/nft"

func hostSupports(family nft.Family) bool {
	return true
}
