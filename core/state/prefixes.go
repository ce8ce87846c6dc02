package state

var (
	accountPrefix          = []byte("account/")
	crowdsaleSalePrefix    = []byte("crowdsale/sale/")
	crowdsaleDepositPrefix = []byte("crowdsale/deposit/")
	crowdsaleCustodyPrefix = []byte("crowdsale/custody/")
	crowdsaleBuyersPrefix  = []byte("crowdsale/buyers/")
	tokenMetadataPrefix    = []byte("token/meta/")
	tokenBalancePrefix     = []byte("token/balance/")
	tokenAllowancePrefix   = []byte("token/allowance/")
	deploymentKeyBytes     = []byte("node/deployment")
)

func joinKey(prefix []byte, parts ...[20]byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(parts)*21)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part[:]...)
	}
	return buf
}

// AccountKey returns the state key of a native account.
func AccountKey(addr [20]byte) []byte { return joinKey(accountPrefix, addr) }

// CrowdsaleSaleKey returns the state key of a sale record.
func CrowdsaleSaleKey(sale [20]byte) []byte { return joinKey(crowdsaleSalePrefix, sale) }

// CrowdsaleDepositKey returns the state key of a buyer's refundable deposit.
func CrowdsaleDepositKey(sale, buyer [20]byte) []byte {
	return joinKey(crowdsaleDepositPrefix, sale, buyer)
}

// CrowdsaleCustodyKey returns the state key of a buyer's undelivered tokens.
func CrowdsaleCustodyKey(sale, buyer [20]byte) []byte {
	return joinKey(crowdsaleCustodyPrefix, sale, buyer)
}

// CrowdsaleBuyersKey returns the state key of the buyer index of a sale.
func CrowdsaleBuyersKey(sale [20]byte) []byte { return joinKey(crowdsaleBuyersPrefix, sale) }

// TokenMetadataKey returns the state key of token metadata.
func TokenMetadataKey(token [20]byte) []byte { return joinKey(tokenMetadataPrefix, token) }

// TokenBalanceKey returns the state key of a token balance.
func TokenBalanceKey(token, owner [20]byte) []byte {
	return joinKey(tokenBalancePrefix, token, owner)
}

// TokenAllowanceKey returns the state key of an allowance.
func TokenAllowanceKey(token, owner, spender [20]byte) []byte {
	return joinKey(tokenAllowancePrefix, token, owner, spender)
}
