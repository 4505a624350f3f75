package core

// AudioEncoding names a recognition input encoding as the speech provider spells it.
type AudioEncoding string

const (
	EncodingUnspecified AudioEncoding = "ENCODING_UNSPECIFIED"
	EncodingLinear16    AudioEncoding = "LINEAR16"
	EncodingFLAC        AudioEncoding = "FLAC"
	EncodingMULAW       AudioEncoding = "MULAW"
	EncodingALAW        AudioEncoding = "ALAW" // converted to LINEAR16 before recognition
	EncodingAMR         AudioEncoding = "AMR"
	EncodingAMRWB       AudioEncoding = "AMR_WB"
	EncodingOggOpus     AudioEncoding = "OGG_OPUS"
	EncodingWebMOpus    AudioEncoding = "WEBM_OPUS"
	EncodingMP3         AudioEncoding = "MP3"
)

func (e AudioEncoding) Known() bool {
	switch e {
	case EncodingUnspecified, EncodingLinear16, EncodingFLAC, EncodingMULAW, EncodingALAW,
		EncodingAMR, EncodingAMRWB, EncodingOggOpus, EncodingWebMOpus, EncodingMP3:
		return true
	default:
		return false
	}
}

// Voice describes the voice a synthesis result was rendered with.
type Voice struct {
	Name         string `json:"name"`
	LanguageCode string `json:"languageCode"`
}
