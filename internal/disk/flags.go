package disk

import "os"

const rdwrCreate = os.O_RDWR | os.O_CREATE
