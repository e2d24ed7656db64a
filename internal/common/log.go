package common

type Log struct {
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
	LogIndex string   `json:"logIndex"`
}

// Receipt is the subset of eth_getTransactionReceipt the prestate model needs.
type Receipt struct {
	TransactionHash string  `json:"transactionHash"`
	ContractAddress *string `json:"contractAddress"`
	Status          string  `json:"status"`
	Logs            []Log   `json:"logs"`
}

func (r Receipt) CreatedContract() string {
	if r.ContractAddress == nil || *r.ContractAddress == "" {
		return ""
	}
	return NormalizeAddress(*r.ContractAddress)
}
