package config

var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎵 Music":        39,
	"⚙️ Settings":    50,
	"🛠️ Maintenance": 60,
}
