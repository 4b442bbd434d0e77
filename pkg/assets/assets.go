// Package assets 资产ID到展示符号的静态对照表，所有调用方共用同一份
package assets

import "strings"

// Asset 资产信息
type Asset struct {
	ID     string
	Name   string
	Symbol string
}

var directory = map[string]Asset{
	"bitcoin":      {ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
	"ethereum":     {ID: "ethereum", Name: "Ethereum", Symbol: "ETH"},
	"cardano":      {ID: "cardano", Name: "Cardano", Symbol: "ADA"},
	"solana":       {ID: "solana", Name: "Solana", Symbol: "SOL"},
	"dogecoin":     {ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE"},
	"xrp":          {ID: "xrp", Name: "XRP", Symbol: "XRP"},
	"tether":       {ID: "tether", Name: "Tether", Symbol: "USDT"},
	"binance-coin": {ID: "binance-coin", Name: "BNB", Symbol: "BNB"},
	"polkadot":     {ID: "polkadot", Name: "Polkadot", Symbol: "DOT"},
	"litecoin":     {ID: "litecoin", Name: "Litecoin", Symbol: "LTC"},
}

// Lookup 查找已知资产
func Lookup(id string) (Asset, bool) {
	a, ok := directory[id]
	return a, ok
}

// Symbol 返回展示符号，未知资产取ID前三个字符大写
func Symbol(id string) string {
	if a, ok := directory[id]; ok {
		return a.Symbol
	}
	if r := []rune(id); len(r) > 3 {
		id = string(r[:3])
	}
	return strings.ToUpper(id)
}

// Name 返回展示名称，未知资产直接返回ID
func Name(id string) string {
	if a, ok := directory[id]; ok {
		return a.Name
	}
	return id
}
