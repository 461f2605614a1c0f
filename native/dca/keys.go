package dca

import (
	"encoding/hex"
	"strconv"
)

var (
	pairPrefix       = []byte("dca/pair/")
	periodPrefix     = []byte("dca/period/")
	orderPrefix      = []byte("dca/order/")
	orderCountPrefix = []byte("dca/ordercount/")
	paramsKey        = []byte("dca/params")
)

func pairKey(sellAsset, buyAsset string) []byte {
	buf := append([]byte(nil), pairPrefix...)
	buf = append(buf, sellAsset...)
	buf = append(buf, '/')
	buf = append(buf, buyAsset...)
	return buf
}

func periodKey(sellAsset, buyAsset string, period uint64) []byte {
	buf := append([]byte(nil), periodPrefix...)
	buf = append(buf, sellAsset...)
	buf = append(buf, '/')
	buf = append(buf, buyAsset...)
	buf = append(buf, '/')
	buf = strconv.AppendUint(buf, period, 10)
	return buf
}

func orderKey(owner [20]byte, index uint64) []byte {
	buf := append([]byte(nil), orderPrefix...)
	buf = append(buf, hex.EncodeToString(owner[:])...)
	buf = append(buf, '/')
	buf = strconv.AppendUint(buf, index, 10)
	return buf
}

func orderCountKey(owner [20]byte) []byte {
	buf := append([]byte(nil), orderCountPrefix...)
	buf = append(buf, hex.EncodeToString(owner[:])...)
	return buf
}
