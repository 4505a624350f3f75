package stt

import "voicerelay/core"

const (
	DefaultEncoding        = core.EncodingWebMOpus
	DefaultSampleRateHertz = 48000
	DefaultLanguageCode    = "en-US"
)

// RecognitionConfig describes the audio handed to Transcribe. Zero fields take the defaults.
type RecognitionConfig struct {
	Encoding        core.AudioEncoding `json:"encoding"`
	SampleRateHertz int                `json:"sampleRateHertz"`
	LanguageCode    string             `json:"languageCode"`
}

func (c RecognitionConfig) withDefaults() RecognitionConfig {
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if c.SampleRateHertz <= 0 {
		c.SampleRateHertz = DefaultSampleRateHertz
	}
	if c.LanguageCode == "" {
		c.LanguageCode = DefaultLanguageCode
	}
	return c
}
