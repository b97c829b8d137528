package formats

import "github.com/therealutkarshpriyadarshi/mediastream/pkg/models"

// Profile tags
const (
	TagJPEG = "JPEG"
	TagPNG  = "PNG"
	TagGIF  = "GIF"
	TagRAW  = "RAW"

	TagMP3          = "MP3"
	TagAACADTS      = "AAC_ADTS"
	TagAACISO       = "AAC_ISO"
	TagFLAC         = "FLAC"
	TagOGG          = "OGG"
	TagWMABase      = "WMA_BASE"
	TagLPCM44Mono   = "LPCM16_44_MONO"
	TagLPCM44Stereo = "LPCM16_44_STEREO"
	TagLPCM48Mono   = "LPCM16_48_MONO"
	TagLPCM48Stereo = "LPCM16_48_STEREO"

	TagAVCMP4    = "AVC_MP4"
	TagHEVCMP4   = "HEVC_MP4"
	TagMPEG4MP4  = "MPEG4_P2_MP4"
	TagMPEGPS    = "MPEG_PS"
	TagMPEG1     = "MPEG1"
	TagOGV       = "OGV"
	TagAVI       = "AVI"
	TagMKV       = "MKV"
	TagFLV       = "FLV"
	TagVC1ASF    = "VC1_ASF"
	TagWMVBase   = "WMV_BASE"
	TagWMVPro    = "WMV_PRO"
	TagAVCTS     = "AVC_TS"
	TagAVCTSAAC  = "AVC_TS_AAC"
	TagAVCTSAC3  = "AVC_TS_AC3"
	TagAVCTSMP3  = "AVC_TS_MP3"
	TagHEVCTS    = "HEVC_TS"
	TagMPEGTS    = "MPEG_TS"
	TagMPEGTSSD  = "MPEG_TS_SD"
	TagMPEGTSAC3 = "MPEG_TS_SD_AC3"
	TagVC1TS     = "VC1_TS"
	TagHLS       = "HLS"
)

// m2tsSuffix marks timestamped transport stream variants
const m2tsSuffix = "_T"

var imageTags = map[models.ImageContainer]string{
	models.ImageContainerJPEG: TagJPEG,
	models.ImageContainerPNG:  TagPNG,
	models.ImageContainerGIF:  TagGIF,
	models.ImageContainerRAW:  TagRAW,
}

var audioTags = map[models.AudioContainer]string{
	models.AudioContainerMP3:  TagMP3,
	models.AudioContainerADTS: TagAACADTS,
	models.AudioContainerMP4:  TagAACISO,
	models.AudioContainerFLAC: TagFLAC,
	models.AudioContainerOGG:  TagOGG,
	models.AudioContainerASF:  TagWMABase,
}

type lpcmKey struct {
	frequency int
	channels  int
}

var lpcmTags = map[lpcmKey]string{
	{44100, 1}: TagLPCM44Mono,
	{44100, 2}: TagLPCM44Stereo,
	{48000, 1}: TagLPCM48Mono,
	{48000, 2}: TagLPCM48Stereo,
}

// lpcmDefaultTag applies when the sample rate or channel count is unknown
const lpcmDefaultTag = TagLPCM48Stereo

// Containers that accept any video codec
var anyCodecVideoTags = map[models.VideoContainer]string{
	models.VideoContainerAVI:      TagAVI,
	models.VideoContainerMatroska: TagMKV,
	models.VideoContainerFLV:      TagFLV,
}

// Containers keyed by video codec alone
var codecVideoTags = map[models.VideoContainer]map[models.VideoCodec][]string{
	models.VideoContainerMP4: {
		models.VideoCodecH264:  {TagAVCMP4},
		models.VideoCodecHEVC:  {TagHEVCMP4},
		models.VideoCodecMPEG4: {TagMPEG4MP4},
	},
	models.VideoContainerMPEGPS: {
		models.VideoCodecMPEG2: {TagMPEGPS},
		models.VideoCodecMPEG1: {TagMPEG1},
	},
	models.VideoContainerOGG: {
		models.VideoCodecTheora: {TagOGV},
	},
}

type avKey struct {
	video models.VideoCodec
	audio models.AudioCodec
}

// Containers whose tag also depends on the audio codec. An empty audio codec
// stands for a stream without audio.
var asfTags = map[avKey][]string{
	{models.VideoCodecVC1, ""}:                      {TagVC1ASF},
	{models.VideoCodecVC1, models.AudioCodecWMA}:    {TagVC1ASF},
	{models.VideoCodecVC1, models.AudioCodecWMAPro}: {TagVC1ASF},
	{models.VideoCodecWMV, ""}:                      {TagWMVBase},
	{models.VideoCodecWMV, models.AudioCodecWMA}:    {TagWMVBase},
	{models.VideoCodecWMV, models.AudioCodecWMAPro}: {TagWMVPro},
}

var tsTags = map[avKey][]string{
	{models.VideoCodecH264, ""}:                    {TagAVCTS},
	{models.VideoCodecH264, models.AudioCodecAAC}:  {TagAVCTSAAC, TagAVCTS},
	{models.VideoCodecH264, models.AudioCodecAC3}:  {TagAVCTSAC3, TagAVCTS},
	{models.VideoCodecH264, models.AudioCodecMP3}:  {TagAVCTSMP3, TagAVCTS},
	{models.VideoCodecHEVC, ""}:                    {TagHEVCTS},
	{models.VideoCodecHEVC, models.AudioCodecAAC}:  {TagHEVCTS},
	{models.VideoCodecHEVC, models.AudioCodecAC3}:  {TagHEVCTS},
	{models.VideoCodecMPEG2, ""}:                   {TagMPEGTS},
	{models.VideoCodecMPEG2, models.AudioCodecMP2}: {TagMPEGTSSD, TagMPEGTS},
	{models.VideoCodecMPEG2, models.AudioCodecAC3}: {TagMPEGTSAC3, TagMPEGTS},
	{models.VideoCodecVC1, ""}:                     {TagVC1TS},
	{models.VideoCodecVC1, models.AudioCodecAC3}:   {TagVC1TS},
}

var hlsTags = map[avKey][]string{
	{models.VideoCodecH264, ""}:                   {TagHLS},
	{models.VideoCodecH264, models.AudioCodecAAC}: {TagHLS},
	{models.VideoCodecH264, models.AudioCodecMP3}: {TagHLS},
}

// defaultMimeTypes is the delivery MIME of every tag for clients that do not
// declare their own mapping.
var defaultMimeTypes = []struct {
	tag  string
	mime string
}{
	{TagJPEG, "image/jpeg"},
	{TagPNG, "image/png"},
	{TagGIF, "image/gif"},
	{TagRAW, "image/x-dcraw"},
	{TagMP3, "audio/mpeg"},
	{TagAACADTS, "audio/vnd.dlna.adts"},
	{TagAACISO, "audio/mp4"},
	{TagFLAC, "audio/flac"},
	{TagOGG, "audio/ogg"},
	{TagWMABase, "audio/x-ms-wma"},
	{TagLPCM44Mono, "audio/L16;rate=44100;channels=1"},
	{TagLPCM44Stereo, "audio/L16;rate=44100;channels=2"},
	{TagLPCM48Mono, "audio/L16;rate=48000;channels=1"},
	{TagLPCM48Stereo, "audio/L16;rate=48000;channels=2"},
	{TagAVCMP4, "video/mp4"},
	{TagHEVCMP4, "video/mp4"},
	{TagMPEG4MP4, "video/mp4"},
	{TagMPEGPS, "video/mpeg"},
	{TagMPEG1, "video/mpeg"},
	{TagOGV, "video/ogg"},
	{TagAVI, "video/x-msvideo"},
	{TagMKV, "video/x-matroska"},
	{TagFLV, "video/x-flv"},
	{TagVC1ASF, "video/x-ms-asf"},
	{TagWMVBase, "video/x-ms-wmv"},
	{TagWMVPro, "video/x-ms-wmv"},
	{TagAVCTS, "video/mp2t"},
	{TagHEVCTS, "video/mp2t"},
	{TagMPEGTS, "video/mp2t"},
	{TagVC1TS, "video/mp2t"},
	{TagAVCTS + m2tsSuffix, "video/vnd.dlna.mpeg-tts"},
	{TagHEVCTS + m2tsSuffix, "video/vnd.dlna.mpeg-tts"},
	{TagMPEGTS + m2tsSuffix, "video/vnd.dlna.mpeg-tts"},
	{TagVC1TS + m2tsSuffix, "video/vnd.dlna.mpeg-tts"},
	{TagHLS, "application/x-mpegURL"},
}
