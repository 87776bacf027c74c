package ledger

import (
	"fmt"
	"strings"
)

// Coin – монета из каталога поддерживаемых.
type Coin struct {
	ID     string
	Symbol string
	Name   string
}

var catalogue = []Coin{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum"},
	{ID: "tether", Symbol: "USDT", Name: "Tether"},
	{ID: "binancecoin", Symbol: "BNB", Name: "BNB"},
	{ID: "solana", Symbol: "SOL", Name: "Solana"},
	{ID: "ripple", Symbol: "XRP", Name: "XRP"},
	{ID: "cardano", Symbol: "ADA", Name: "Cardano"},
	{ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin"},
	{ID: "polkadot", Symbol: "DOT", Name: "Polkadot"},
	{ID: "litecoin", Symbol: "LTC", Name: "Litecoin"},
}

var coinsByID = func() map[string]Coin {
	m := make(map[string]Coin, len(catalogue))
	for _, c := range catalogue {
		m[c.ID] = c
	}
	return m
}()

// Coins возвращает копию каталога.
func Coins() []Coin {
	out := make([]Coin, len(catalogue))
	copy(out, catalogue)
	return out
}

// LookupCoin ищет монету по идентификатору.
func LookupCoin(id string) (Coin, bool) {
	c, ok := coinsByID[id]
	return c, ok
}

// CoinName возвращает отображаемое имя монеты, для неизвестных – сам идентификатор.
func CoinName(id string) string {
	if c, ok := coinsByID[id]; ok {
		return c.Name
	}
	return id
}

// Asset – тип актива, который администратор может начислить.
type Asset string

// AssetCash – денежный баланс, остальные активы – символы монет из каталога.
const AssetCash Asset = "cash"

// assetCoins – закрытая таблица символ -> coinId.
var assetCoins = func() map[Asset]string {
	m := make(map[Asset]string, len(catalogue))
	for _, c := range catalogue {
		m[Asset(c.Symbol)] = c.ID
	}
	return m
}()

// ParseAsset разбирает "cash" или символ монеты (регистр не важен).
func ParseAsset(s string) (Asset, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(AssetCash)) {
		return AssetCash, nil
	}
	a := Asset(strings.ToUpper(s))
	if _, ok := assetCoins[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, s)
	}
	return a, nil
}

// CoinID возвращает идентификатор монеты для актива.
func (a Asset) CoinID() (string, bool) {
	id, ok := assetCoins[a]
	return id, ok
}
