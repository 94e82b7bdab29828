package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"bridge-relay/internal/bridge"
)

// Produces one validator approval signature for a request id. Validators run
// this against their own key; the relayer collects the outputs and submits
// them to the mint/unlock endpoint.
func main() {
	keyHex := flag.String("key", "", "validator private key (hex, no 0x)")
	requestID := flag.String("request-id", "", "request id (0x-prefixed 32-byte hash)")
	sourceChain := flag.Uint64("source-chain", 0, "source chain id the request was created on")
	tag := flag.String("tag", "XCHAIN_RELAY_V2", "protocol tag")
	domain := flag.String("domain", "", "deployment domain separator")
	flag.Parse()

	if *keyHex == "" || *requestID == "" || *sourceChain == 0 {
		fmt.Fprintln(os.Stderr, "usage: sign-approval -key <hex> -request-id 0x... -source-chain <id> [-tag TAG] [-domain DOMAIN]")
		os.Exit(1)
	}

	key, err := crypto.HexToECDSA(*keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid private key: %v\n", err)
		os.Exit(1)
	}

	id := common.HexToHash(*requestID)
	digest := bridge.ApprovalDigest(*tag, id, *sourceChain, []byte(*domain))

	sig, err := bridge.SignApproval(digest, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hexutil.Encode(sig))
	fmt.Fprintf(os.Stderr, "signer=%s digest=%s\n", crypto.PubkeyToAddress(key.PublicKey).Hex(), digest.Hex())
}
