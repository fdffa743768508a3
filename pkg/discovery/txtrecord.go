package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/version"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeNodeTXT creates TXT records for a node advertisement.
func EncodeNodeTXT(info *NodeInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion: info.Version.String(),
		TXTKeyPid:     info.Pid.String(),
	}
	if info.MaxFrameSize > 0 {
		txt[TXTKeyMaxFrameSize] = strconv.FormatUint(uint64(info.MaxFrameSize), 10)
	}
	return txt
}

// DecodeNodeTXT parses TXT records of a node advertisement.
func DecodeNodeTXT(txt TXTRecordMap) (*NodeInfo, error) {
	info := &NodeInfo{}

	v, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	ver, err := version.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTXTRecord, TXTKeyVersion, err)
	}
	info.Version = ver

	p, ok := txt[TXTKeyPid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPid)
	}
	pid, err := frame.ParsePid(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTXTRecord, TXTKeyPid, err)
	}
	info.Pid = pid

	if mf, ok := txt[TXTKeyMaxFrameSize]; ok {
		n, err := strconv.ParseUint(mf, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTXTRecord, TXTKeyMaxFrameSize, err)
		}
		info.MaxFrameSize = uint32(n)
	}

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a sorted slice of
// "key=value" strings, the form mDNS libraries expect.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		if !found {
			// Key without value (boolean flag)
			v = ""
		}
		txt[k] = v
	}
	return txt
}
