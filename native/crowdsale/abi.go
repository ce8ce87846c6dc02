package crowdsale

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// SaleABI declares the sale's events in Solidity ABI form. Indexed arguments
// become log topics, the rest is packed into log data.
const SaleABI = `[
  {"type":"event","name":"TokensPurchased","anonymous":false,"inputs":[
    {"name":"purchaser","type":"address","indexed":true},
    {"name":"beneficiary","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"UsdRateUpdated","anonymous":false,"inputs":[
    {"name":"usdRate","type":"uint256","indexed":false}]},
  {"type":"event","name":"TokenRateUpdated","anonymous":false,"inputs":[
    {"name":"rate","type":"uint256","indexed":false}]},
  {"type":"event","name":"FundsUnlocked","anonymous":false,"inputs":[
    {"name":"goalBalance","type":"uint256","indexed":false},
    {"name":"raiseBalance","type":"uint256","indexed":false}]},
  {"type":"event","name":"TokensUnlocked","anonymous":false,"inputs":[
    {"name":"pending","type":"uint256","indexed":false}]},
  {"type":"event","name":"Withdrawn","anonymous":false,"inputs":[
    {"name":"wallet","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"BeneficiaryChanged","anonymous":false,"inputs":[
    {"name":"previousWallet","type":"address","indexed":true},
    {"name":"newWallet","type":"address","indexed":true}]},
  {"type":"event","name":"TokensDelivered","anonymous":false,"inputs":[
    {"name":"beneficiary","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"CrowdsaleFinalized","anonymous":false,"inputs":[
    {"name":"goalReached","type":"bool","indexed":false},
    {"name":"weiRaised","type":"uint256","indexed":false}]},
  {"type":"event","name":"Refunded","anonymous":false,"inputs":[
    {"name":"payee","type":"address","indexed":true},
    {"name":"weiAmount","type":"uint256","indexed":false}]}
]`

var saleABI = mustParseABI(SaleABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ABI returns the parsed sale ABI.
func ABI() abi.ABI { return saleABI }
