package codec

// UnknownGovernorate is reported for codes missing from the table.
const UnknownGovernorate = "Unknown"

var egyptianGovernorates = map[string]string{
	"01": "Cairo",
	"02": "Alexandria",
	"03": "Port Said",
	"04": "Suez",
	"11": "Damietta",
	"12": "Dakahlia",
	"13": "Sharqia",
	"14": "Qalyubia",
	"15": "Kafr El Sheikh",
	"16": "Gharbia",
	"17": "Monufia",
	"18": "Beheira",
	"19": "Ismailia",
	"21": "Giza",
	"22": "Beni Suef",
	"23": "Fayoum",
	"24": "Minya",
	"25": "Asyut",
	"26": "Sohag",
	"27": "Qena",
	"28": "Aswan",
	"29": "Luxor",
	"31": "Red Sea",
	"32": "New Valley",
	"33": "Matrouh",
	"34": "North Sinai",
	"35": "South Sinai",
	"88": "Foreign",
}

// GovernorateName resolves a two-digit code, falling back to "Unknown".
func GovernorateName(code string) string {
	if name, ok := egyptianGovernorates[code]; ok {
		return name
	}
	return UnknownGovernorate
}
