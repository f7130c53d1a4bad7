// Package router dispatches inbound socket frames to the connection layer.
//
// Every frame is a JSON envelope {"event": name, "data": payload}. The
// transport read loop calls HandleText or HandleBinary sequentially per
// socket so inbound order is preserved. Routing depends on the connection
// type:
//
//	device      command, message, asrAudioStart, asrAudio, asrAudioEnd, base64Photo, timesync
//	controller  command (subscribe, unsubscribe, tts, nlu, unicast), timesync
//	app         command (sync, tts, nlu), timesync
//
// A malformed frame fails only its own branch and is counted in Stats.
package router
