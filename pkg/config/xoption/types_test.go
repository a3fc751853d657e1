package xoption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork_CIDR(t *testing.T) {
	opt, err := NewNetwork("net", "", true)
	require.NoError(t, err)

	assert.NoError(t, opt.Validate("192.168.0.0/24"))

	err = opt.Validate("192.168.0.0")
	var ve *ValueOptionError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "must use CIDR notation")
	assert.Equal(t, "network address", ve.Type)

	err = opt.Validate("192.168.0.1/24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid network address")
}

func TestNetwork_SecondLevel(t *testing.T) {
	opt := Must(NewNetwork("net", "", false))
	assert.NoError(t, opt.SecondLevelValidate("10.0.0.0", true))

	err := opt.SecondLevelValidate("240.0.0.0", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shouldn't be reserved network")
}

func TestIP(t *testing.T) {
	tests := []struct {
		name    string
		typ     IP
		value   any
		wantErr string
	}{
		{"plain", IP{}, "192.168.1.1", ""},
		{"not string", IP{}, 1, "-"},
		{"three parts", IP{}, "192.168.1", "-"},
		{"leading zero", IP{}, "192.168.01.1", "-"},
		{"cidr", IP{CIDR: true}, "192.168.1.1/24", ""},
		{"cidr missing", IP{CIDR: true}, "192.168.1.1", "must use CIDR notation"},
		{"cidr network", IP{CIDR: true}, "192.168.1.0/24", "it's in fact a network address"},
		{"cidr broadcast", IP{CIDR: true}, "192.168.1.255/24", "it's in fact a broadcast address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			switch tt.wantErr {
			case "":
				assert.NoError(t, err)
			case "-":
				assert.Error(t, err)
			default:
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
			}
		})
	}

	t.Run("second level", func(t *testing.T) {
		assert.EqualError(t, IP{}.SecondLevel("241.0.0.1", true), "shouldn't be reserved IP")
		assert.EqualError(t, IP{}.SecondLevel("241.0.0.1", false), "mustn't be reserved IP")
		assert.NoError(t, IP{AllowReserved: true}.SecondLevel("241.0.0.1", false))
		assert.EqualError(t, IP{Private: true}.SecondLevel("8.8.8.8", false), "must be private IP")
		assert.NoError(t, IP{Private: true}.SecondLevel("10.1.2.3", false))
	})
}

func TestNetmask(t *testing.T) {
	bits, err := NetmaskBits("255.255.255.0")
	require.NoError(t, err)
	assert.Equal(t, 24, bits)

	_, err = NetmaskBits("255.0.255.0")
	assert.Error(t, err)

	assert.NoError(t, Netmask{}.Validate("255.255.0.0"))
	assert.Error(t, Netmask{}.Validate("255.255.0"))
}

func TestInt(t *testing.T) {
	lo, hi := 1, 10
	typ := Int{Min: &lo, Max: &hi}
	assert.NoError(t, typ.Validate(5))
	assert.NoError(t, typ.Validate(int64(5)))
	assert.Error(t, typ.Validate("5"))
	assert.Error(t, typ.Validate(true))
	assert.Error(t, typ.Validate(2.5))
	assert.EqualError(t, typ.Validate(0), `value must be equal or greater than "1"`)
	assert.EqualError(t, typ.Validate(11), `value must be equal or less than "10"`)
}

func TestChoice(t *testing.T) {
	opt := Must(NewChoice("c", "", []any{"a", "b"}))
	assert.NoError(t, opt.Validate("a"))

	err := opt.Validate("c")
	require.Error(t, err)
	assert.Equal(t, `"c" is an invalid choice for "c", only "a" and "b" are allowed`, err.Error())

	assert.EqualError(t, CheckChoice(1, []any{2}), `only "2" is allowed`)
	assert.NoError(t, CheckChoice(2.0, []any{2}))
}

func TestPort(t *testing.T) {
	def := DefaultPort()
	assert.NoError(t, def.Validate(80))
	assert.NoError(t, def.Validate("8080"))
	assert.EqualError(t, def.Validate(0), "must be an integer between 1 and 49151")
	assert.EqualError(t, def.Validate(60000), "must be an integer between 1 and 49151")
	assert.Error(t, def.Validate("80a"))

	ranged := Port{AllowRange: true, AllowWellKnown: true, AllowRegistered: true}
	assert.NoError(t, ranged.Validate("1000:2000"))
	assert.EqualError(t, ranged.Validate("2000:1000"), "first port in range must be smaller than the second one")
	assert.EqualError(t, ranged.Validate("1:2:3"), "range must have two values only")

	all := Port{AllowZero: true, AllowWellKnown: true, AllowRegistered: true, AllowPrivate: true}
	assert.NoError(t, all.Validate(0))
	assert.NoError(t, all.Validate(65535))
}

func TestDomainname(t *testing.T) {
	tests := []struct {
		name    string
		typ     Domainname
		value   string
		wantErr string
	}{
		{"ok", Domainname{}, "example.net", ""},
		{"no dot", Domainname{}, "example", "must have dot"},
		{"no dot allowed", Domainname{AllowWithoutDot: true}, "example", ""},
		{"ip refused", Domainname{}, "192.168.1.1", "must not be an IP"},
		{"ip allowed", Domainname{AllowIP: true}, "192.168.1.1", ""},
		{"bad char", Domainname{}, "exa_mple.net", `allowed characters are: a-z, 0-9, "-" and "."`},
		{"hostname", Domainname{Kind: HostName}, "host-1", ""},
		{"netbios too long", Domainname{Kind: NetBIOS}, "abcdefghijklmnop", "invalid length (max 15)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}

	assert.EqualError(t, Domainname{}.SecondLevel("Example.net", true), "some characters are uppercase")
}

func TestPatternTypes(t *testing.T) {
	assert.NoError(t, URL{}.Validate("https://example.net:8443/path"))
	assert.EqualError(t, URL{}.Validate("ftp://example.net"), "must start with http:// or https://")

	assert.NoError(t, Email{}.Validate("root@example.net"))
	assert.EqualError(t, Email{}.Validate("root.example.net"), "must contains one @")

	assert.NoError(t, Filename{}.Validate("/etc/hosts"))
	assert.Error(t, Filename{}.Validate("etc/hosts"))

	assert.NoError(t, Username{}.Validate("user_1"))
	assert.Error(t, Username{}.Validate("User"))

	assert.NoError(t, MACAddress{}.Validate("01:23:45:67:89:ab"))
	assert.Error(t, MACAddress{}.Validate("01-23-45-67-89-ab"))

	assert.NoError(t, Date{}.Validate("2020-01-31"))
	assert.Error(t, Date{}.Validate("2020-13-01"))

	assert.NoError(t, Permissions{}.Validate(644))
	assert.NoError(t, Permissions{}.Validate("0755"))
	assert.Error(t, Permissions{}.Validate(999))

	opt, err := NewRegexp("color", "", "color", `^#[0-9a-f]{6}$`)
	require.NoError(t, err)
	assert.NoError(t, opt.Validate("#00ff00"))
	assert.EqualError(t, opt.Validate("red"), `"red" is an invalid color for "color"`)

	_, err = NewRegexp("bad", "", "", "(")
	assert.ErrorIs(t, err, ErrConfig)
}
