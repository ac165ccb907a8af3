package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		wantName string
		wantAddr string
	}{
		{name: "quoted", from: `"Yamada Taro" <taro@example.co.jp>`, wantName: "Yamada Taro", wantAddr: "taro@example.co.jp"},
		{name: "quoted japanese", from: `"山田 太郎" <taro@example.co.jp>`, wantName: "山田 太郎", wantAddr: "taro@example.co.jp"},
		{name: "bare name", from: `Hanako Suzuki <hanako@acme.com>`, wantName: "Hanako Suzuki", wantAddr: "hanako@acme.com"},
		{name: "name with embedded address", from: `sales@acme.com via Acme <sales@acme.com>`, wantName: "via Acme", wantAddr: "sales@acme.com"},
		{name: "parenthesised name", from: `taro@example.com (Taro Y)`, wantName: "Taro Y", wantAddr: "taro@example.com"},
		{name: "organisation from domain", from: `<info@acme-trading.co.jp>`, wantName: "Acme Trading", wantAddr: "info@acme-trading.co.jp"},
		{name: "subdomain organisation", from: `support@mail.globex.com`, wantName: "Globex", wantAddr: "support@mail.globex.com"},
		{name: "country tld", from: `hans@firma.de`, wantName: "Firma", wantAddr: "hans@firma.de"},
		{name: "generic tld", from: `ceo@startup.io`, wantName: "Startup", wantAddr: "ceo@startup.io"},
		{name: "second-level suffix", from: `bob@acme.co.uk`, wantName: "Acme", wantAddr: "bob@acme.co.uk"},
		{name: "reserved tld", from: `taro@customer.example`, wantName: "Customer", wantAddr: "taro@customer.example"},
		{name: "local part from free mail", from: `taro.yamada@gmail.com`, wantName: "Taro Yamada", wantAddr: "taro.yamada@gmail.com"},
		{name: "single char name falls through", from: `"T" <t_suzuki@yahoo.co.jp>`, wantName: "T Suzuki", wantAddr: "t_suzuki@yahoo.co.jp"},
		{name: "garbage", from: `<>`, wantName: UnknownSender, wantAddr: "<>"},
		{name: "empty", from: ``, wantName: UnknownSender, wantAddr: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, addr := Parse(tt.from)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAddr, addr)
		})
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("a.b-c@example.co.jp"))
	assert.True(t, IsValid("user+tag@example.com"))
	assert.False(t, IsValid("no-at-sign"))
	assert.False(t, IsValid("a@localhost"))
	assert.False(t, IsValid("Name <a@example.com>"))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Taro Yamada", CleanName("  'Taro'\t (Yamada)\x00 "))
	assert.Equal(t, "", CleanName(`"<>"`))
}
