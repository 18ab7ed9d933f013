// Package emoji maps country and region display names to flag glyphs.
package emoji

import "strings"

// Flag returns the flag glyph for a country or region display name.
// The bool result is false if the name is blank or unknown.
//
// Matching is exact first, then a case-insensitive comparison of the trimmed
// input against every known name. There is no partial or fuzzy matching: a
// location with extra words ("Greater London, UK") will not match "United
// Kingdom" unless that exact string is added to the table.
func Flag(name string) (string, bool) {
	if name == "" {
		return "", false
	}

	if g, ok := flags[name]; ok {
		return g, true
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", false
	}
	for k, g := range flags {
		if strings.EqualFold(trimmed, k) {
			return g, true
		}
	}

	return "", false
}

// Names returns the number of known display names, aliases included.
func Names() int {
	return len(flags)
}

// glyph converts an ISO 3166-1 alpha-2 code to its regional-indicator pair.
func glyph(code string) string {
	r := []rune(code)
	return string([]rune{0x1F1E6 + r[0] - 'A', 0x1F1E6 + r[1] - 'A'})
}

// flags maps display names to glyphs. Built from the ISO code table below
// plus aliases for spellings the site's location field commonly contains.
var flags = func() map[string]string {
	m := make(map[string]string, len(countries)+len(aliases))
	for name, code := range countries {
		m[name] = glyph(code)
	}
	for alias, code := range aliases {
		m[alias] = glyph(code)
	}
	return m
}()

// countries maps canonical display names to ISO 3166-1 alpha-2 codes.
var countries = map[string]string{
	"Afghanistan":                      "AF",
	"Albania":                          "AL",
	"Algeria":                          "DZ",
	"Andorra":                          "AD",
	"Angola":                           "AO",
	"Antigua and Barbuda":              "AG",
	"Argentina":                        "AR",
	"Armenia":                          "AM",
	"Australia":                        "AU",
	"Austria":                          "AT",
	"Azerbaijan":                       "AZ",
	"Bahamas":                          "BS",
	"Bahrain":                          "BH",
	"Bangladesh":                       "BD",
	"Barbados":                         "BB",
	"Belarus":                          "BY",
	"Belgium":                          "BE",
	"Belize":                           "BZ",
	"Benin":                            "BJ",
	"Bhutan":                           "BT",
	"Bolivia":                          "BO",
	"Bosnia and Herzegovina":           "BA",
	"Botswana":                         "BW",
	"Brazil":                           "BR",
	"Brunei":                           "BN",
	"Bulgaria":                         "BG",
	"Burkina Faso":                     "BF",
	"Burundi":                          "BI",
	"Cambodia":                         "KH",
	"Cameroon":                         "CM",
	"Canada":                           "CA",
	"Cape Verde":                       "CV",
	"Central African Republic":         "CF",
	"Chad":                             "TD",
	"Chile":                            "CL",
	"China":                            "CN",
	"Colombia":                         "CO",
	"Comoros":                          "KM",
	"Costa Rica":                       "CR",
	"Croatia":                          "HR",
	"Cuba":                             "CU",
	"Cyprus":                           "CY",
	"Czech Republic":                   "CZ",
	"Democratic Republic of the Congo": "CD",
	"Denmark":                          "DK",
	"Djibouti":                         "DJ",
	"Dominica":                         "DM",
	"Dominican Republic":               "DO",
	"Ecuador":                          "EC",
	"Egypt":                            "EG",
	"El Salvador":                      "SV",
	"Equatorial Guinea":                "GQ",
	"Eritrea":                          "ER",
	"Estonia":                          "EE",
	"Eswatini":                         "SZ",
	"Ethiopia":                         "ET",
	"Fiji":                             "FJ",
	"Finland":                          "FI",
	"France":                           "FR",
	"Gabon":                            "GA",
	"Gambia":                           "GM",
	"Georgia":                          "GE",
	"Germany":                          "DE",
	"Ghana":                            "GH",
	"Greece":                           "GR",
	"Grenada":                          "GD",
	"Guatemala":                        "GT",
	"Guinea":                           "GN",
	"Guinea-Bissau":                    "GW",
	"Guyana":                           "GY",
	"Haiti":                            "HT",
	"Honduras":                         "HN",
	"Hong Kong":                        "HK",
	"Hungary":                          "HU",
	"Iceland":                          "IS",
	"India":                            "IN",
	"Indonesia":                        "ID",
	"Iran":                             "IR",
	"Iraq":                             "IQ",
	"Ireland":                          "IE",
	"Israel":                           "IL",
	"Italy":                            "IT",
	"Ivory Coast":                      "CI",
	"Jamaica":                          "JM",
	"Japan":                            "JP",
	"Jordan":                           "JO",
	"Kazakhstan":                       "KZ",
	"Kenya":                            "KE",
	"Kiribati":                         "KI",
	"Kosovo":                           "XK",
	"Kuwait":                           "KW",
	"Kyrgyzstan":                       "KG",
	"Laos":                             "LA",
	"Latvia":                           "LV",
	"Lebanon":                          "LB",
	"Lesotho":                          "LS",
	"Liberia":                          "LR",
	"Libya":                            "LY",
	"Liechtenstein":                    "LI",
	"Lithuania":                        "LT",
	"Luxembourg":                       "LU",
	"Macau":                            "MO",
	"Madagascar":                       "MG",
	"Malawi":                           "MW",
	"Malaysia":                         "MY",
	"Maldives":                         "MV",
	"Mali":                             "ML",
	"Malta":                            "MT",
	"Marshall Islands":                 "MH",
	"Mauritania":                       "MR",
	"Mauritius":                        "MU",
	"Mexico":                           "MX",
	"Micronesia":                       "FM",
	"Moldova":                          "MD",
	"Monaco":                           "MC",
	"Mongolia":                         "MN",
	"Montenegro":                       "ME",
	"Morocco":                          "MA",
	"Mozambique":                       "MZ",
	"Myanmar":                          "MM",
	"Namibia":                          "NA",
	"Nauru":                            "NR",
	"Nepal":                            "NP",
	"Netherlands":                      "NL",
	"New Zealand":                      "NZ",
	"Nicaragua":                        "NI",
	"Niger":                            "NE",
	"Nigeria":                          "NG",
	"North Korea":                      "KP",
	"North Macedonia":                  "MK",
	"Norway":                           "NO",
	"Oman":                             "OM",
	"Pakistan":                         "PK",
	"Palau":                            "PW",
	"Palestine":                        "PS",
	"Panama":                           "PA",
	"Papua New Guinea":                 "PG",
	"Paraguay":                         "PY",
	"Peru":                             "PE",
	"Philippines":                      "PH",
	"Poland":                           "PL",
	"Portugal":                         "PT",
	"Puerto Rico":                      "PR",
	"Qatar":                            "QA",
	"Republic of the Congo":            "CG",
	"Romania":                          "RO",
	"Russia":                           "RU",
	"Rwanda":                           "RW",
	"Saint Kitts and Nevis":            "KN",
	"Saint Lucia":                      "LC",
	"Saint Vincent and the Grenadines": "VC",
	"Samoa":                            "WS",
	"San Marino":                       "SM",
	"Sao Tome and Principe":            "ST",
	"Saudi Arabia":                     "SA",
	"Senegal":                          "SN",
	"Serbia":                           "RS",
	"Seychelles":                       "SC",
	"Sierra Leone":                     "SL",
	"Singapore":                        "SG",
	"Slovakia":                         "SK",
	"Slovenia":                         "SI",
	"Solomon Islands":                  "SB",
	"Somalia":                          "SO",
	"South Africa":                     "ZA",
	"South Korea":                      "KR",
	"South Sudan":                      "SS",
	"Spain":                            "ES",
	"Sri Lanka":                        "LK",
	"Sudan":                            "SD",
	"Suriname":                         "SR",
	"Sweden":                           "SE",
	"Switzerland":                      "CH",
	"Syria":                            "SY",
	"Taiwan":                           "TW",
	"Tajikistan":                       "TJ",
	"Tanzania":                         "TZ",
	"Thailand":                         "TH",
	"Timor-Leste":                      "TL",
	"Togo":                             "TG",
	"Tonga":                            "TO",
	"Trinidad and Tobago":              "TT",
	"Tunisia":                          "TN",
	"Turkey":                           "TR",
	"Turkmenistan":                     "TM",
	"Tuvalu":                           "TV",
	"Uganda":                           "UG",
	"Ukraine":                          "UA",
	"United Arab Emirates":             "AE",
	"United Kingdom":                   "GB",
	"United States":                    "US",
	"Uruguay":                          "UY",
	"Uzbekistan":                       "UZ",
	"Vanuatu":                          "VU",
	"Vatican City":                     "VA",
	"Venezuela":                        "VE",
	"Vietnam":                          "VN",
	"Yemen":                            "YE",
	"Zambia":                           "ZM",
	"Zimbabwe":                         "ZW",
}

// aliases maps spellings the location field commonly contains to codes.
// Verbatim strings only; see Flag for why there is no fuzzy matching.
var aliases = map[string]string{
	"United States of America": "US",
	"USA":                      "US",
	"U.S.A.":                   "US",
	"US":                       "US",
	"America":                  "US",
	"UK":                       "GB",
	"U.K.":                     "GB",
	"Great Britain":            "GB",
	"England":                  "GB",
	"Scotland":                 "GB",
	"Wales":                    "GB",
	"Northern Ireland":         "GB",
	"UAE":                      "AE",
	"Republic of Korea":        "KR",
	"Korea":                    "KR",
	"Republic of Ireland":      "IE",
	"Czechia":                  "CZ",
	"Türkiye":                  "TR",
	"Burma":                    "MM",
	"Côte d'Ivoire":            "CI",
	"Viet Nam":                 "VN",
	"Russian Federation":       "RU",
	"The Netherlands":          "NL",
	"Holland":                  "NL",
	"Deutschland":              "DE",
	"Brasil":                   "BR",
	"México":                   "MX",
	"España":                   "ES",
	"People's Republic of China": "CN",
	"Republic of China":          "TW",
	"DRC":                        "CD",
	"Swaziland":                  "SZ",
	"East Timor":                 "TL",
	"Cabo Verde":                 "CV",
	"Macedonia":                  "MK",
}
