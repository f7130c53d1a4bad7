package session

// ASREvent is emitted by an ASR stream. It is one of ASRStartOfSpeech,
// ASREndOfSpeech, ASRResult, ASRSessionEnded or ASRError.
type ASREvent interface{ asrEvent() }

// ASRStartOfSpeech marks the first audio of an utterance.
type ASRStartOfSpeech struct{}

// ASREndOfSpeech marks the end of the utterance audio.
type ASREndOfSpeech struct{}

// ASRResult carries an interim or final hypothesis.
type ASRResult struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// ASRSessionEnded carries the final transcript. It is the last event of a
// successful stream.
type ASRSessionEnded struct {
	Text string `json:"text"`
}

// ASRError reports a failed stream. It is the last event of the stream.
type ASRError struct {
	Err error
}

func (ASRStartOfSpeech) asrEvent() {}
func (ASREndOfSpeech) asrEvent()   {}
func (ASRResult) asrEvent()        {}
func (ASRSessionEnded) asrEvent()  {}
func (ASRError) asrEvent()         {}

// TTSEvent is emitted by a TTS handler. It is one of TTSAudioStart,
// TTSAudio, TTSAudioEnd or TTSAudioError.
type TTSEvent interface{ ttsEvent() }

// TTSAudioStart precedes the first audio chunk.
type TTSAudioStart struct {
	InputText string `json:"inputText"`
}

// TTSAudio carries one chunk of synthesized audio.
type TTSAudio struct {
	Chunk []byte
}

// TTSAudioEnd follows the last audio chunk.
type TTSAudioEnd struct{}

// TTSAudioError reports a failed synthesis.
type TTSAudioError struct {
	Err error
}

func (TTSAudioStart) ttsEvent() {}
func (TTSAudio) ttsEvent()      {}
func (TTSAudioEnd) ttsEvent()   {}
func (TTSAudioError) ttsEvent() {}

// NLUEvent is emitted by an NLU handler. It is one of NLUStart, NLUEnd or
// NLUError.
type NLUEvent interface{ nluEvent() }

// NLUStart is emitted before the request is sent.
type NLUStart struct {
	InputText string `json:"inputText"`
}

// NLUEnd carries the provider response.
type NLUEnd struct {
	Response NLUResponse
}

// NLUError reports a failed request.
type NLUError struct {
	Err error
}

func (NLUStart) nluEvent() {}
func (NLUEnd) nluEvent()   {}
func (NLUError) nluEvent() {}
