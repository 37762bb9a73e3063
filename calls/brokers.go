package calls

// brokerLogos maps known brokers to their logo asset
var brokerLogos = map[string]string{
	"Motilal Oswal":    "/mo.png",
	"ICICI Securities": "/icici.png",
	"HDFC Securities":  "/hdfc.png",
	"Angel One":        "/angel.png",
	"IIFL Securities":  "/iifl.png",
	"Kotak Securities": "/kotak.png",
	"SBI Securities":   "/sbi.png",
}

// BrokerLogo returns the logo path for a broker, empty when unknown
func BrokerLogo(name string) string {
	return brokerLogos[name]
}
